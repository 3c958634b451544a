package subtitle

import (
	"fmt"
	"strconv"
	"strings"
)

// MediaType is the content type served for rendered subtitles.
const MediaType = "application/x-subrip"

// Render serializes blocks as SRT: index, range and text lines per block with
// a blank line between blocks.
func Render(blocks []Block) string {
	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\n%s\n%s\n", blk.Index, blk.Range(), blk.Text)
	}
	return b.String()
}

// Parse reads SRT text back into blocks. Lines outside of a block, such as a
// preamble or markdown fences around the payload, are ignored. Timecodes are
// kept as written.
func Parse(text string) ([]Block, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		blocks []Block
		cur    *Block
		body   []string
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(body, "\n")
			blocks = append(blocks, *cur)
		}
		cur, body = nil, nil
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "```") {
			flush()
			continue
		}
		if idx, ok := blockHeader(lines, i); ok {
			flush()
			start, end, _ := strings.Cut(lines[i+1], "-->")
			cur = &Block{Index: idx, Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
			i++
			continue
		}
		if cur == nil {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		body = append(body, line)
	}
	flush()

	if len(blocks) == 0 {
		return nil, ErrMalformedSRT
	}
	return blocks, nil
}

func blockHeader(lines []string, i int) (int, bool) {
	if i+1 >= len(lines) || !strings.Contains(lines[i+1], "-->") {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(lines[i]))
	if err != nil || idx <= 0 {
		return 0, false
	}
	return idx, true
}

// Chunk splits blocks into consecutive groups of at most size blocks.
func Chunk(blocks []Block, size int) [][]Block {
	if size <= 0 || len(blocks) <= size {
		if len(blocks) == 0 {
			return nil
		}
		return [][]Block{blocks}
	}
	out := make([][]Block, 0, (len(blocks)+size-1)/size)
	for start := 0; start < len(blocks); start += size {
		end := min(start+size, len(blocks))
		out = append(out, blocks[start:end])
	}
	return out
}
