package transliterate

import (
	"strings"

	"github.com/kbukum/captiongen/subtitle"
)

const systemPrompt = `You are a Hinglish expert. You convert subtitles whose text is written in Hindi (Devanagari) into Hinglish: the same words spelled with English letters so they are pronounced exactly as the Hindi form.`

const instructions = `Convert the SRT data below into Hinglish.
Do not change the SRT format: keep every block number and every time range exactly as given.
Only change the Hindi words into their English-letter pronunciation.
Respond with the converted SRT data and nothing else.

Example, before:
11
0:00:03,270 --> 0:00:03,660
हमेशा

After conversion to Hinglish:
11
0:00:03,270 --> 0:00:03,660
Hamesha

SRT data:
`

// userPrompt builds the request for one chunk of blocks.
func userPrompt(blocks []subtitle.Block) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString(subtitle.Render(blocks))
	return b.String()
}
