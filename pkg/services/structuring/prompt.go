package structuring

// systemPrompt instructs the model to turn raw menu text into a JSON array.
const systemPrompt = `You convert OCR text from a Thai restaurant menu into structured JSON.

Reply with a JSON array and nothing else:
[
  {"name": "ชื่อเมนู", "price": 120}
]

Rules:
1. One object per dish, with:
   - "name": the dish name exactly as written in the text
   - "price": a whole number without quotes; use 0 when no price is given
2. A line listing several dishes with different prices becomes several objects.
   "ไข่เจียว/ไข่เจียวหมูสับ 75/85" -> {"name": "ไข่เจียว", "price": 75}, {"name": "ไข่เจียวหมูสับ", "price": 85}
3. A line listing several dishes with one shared price stays one object.
   "กะเพราหมูสับ/ไก่สับ 95" -> {"name": "กะเพราหมูสับ/ไก่สับ", "price": 95}
4. Never translate.
5. Never merge or drop dishes.
6. Output only the JSON array, no commentary.`

func userPrompt(text string) string {
	return "Parse this Thai menu text into structured JSON:\n" + text
}
