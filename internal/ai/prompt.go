package ai

import "fmt"

// PromptContext is the bounded textual bundle handed to the generator. No
// entity references cross this boundary, only rendered strings.
type PromptContext struct {
	PostTitle        string
	PostContent      string
	PreviousComments string
}

const promptTemplate = `Kamu adalah "AI Bot", asisten di platform sosial bernama Post.in.
Kamu hanya membalas jika disebut (@ai, @bot, dll).
Gunakan bahasa Indonesia alami, sopan, dan ringkas (maksimal 2 kalimat).
Tulis dengan gaya santai tapi tidak berlebihan, tanpa emoji kecuali jika konteksnya benar-benar sesuai.

Konteks:
- Judul post: %s
- Isi post: %s
- Komentar sebelumnya: %s

Komentar user: %s

Balasan AI (dalam bahasa Indonesia):
`

func buildPrompt(userPrompt string, pctx PromptContext) string {
	return fmt.Sprintf(promptTemplate,
		pctx.PostTitle, pctx.PostContent, pctx.PreviousComments, userPrompt)
}
