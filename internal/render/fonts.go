package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type faceSet struct {
	title   font.Face
	body    font.Face
	caption font.Face
}

var (
	facesOnce sync.Once
	faces     faceSet
	facesErr  error
)

func loadFaces() (faceSet, error) {
	facesOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			facesErr = fmt.Errorf("parse regular font: %w", err)
			return
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			facesErr = fmt.Errorf("parse bold font: %w", err)
			return
		}
		mk := func(f *opentype.Font, size float64) font.Face {
			if facesErr != nil {
				return nil
			}
			face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
			if err != nil {
				facesErr = fmt.Errorf("font face %.0fpt: %w", size, err)
			}
			return face
		}
		faces = faceSet{title: mk(bold, 30), body: mk(regular, 22), caption: mk(regular, 16)}
	})
	return faces, facesErr
}

// printable swaps runes the face cannot draw (Hangul names, emoji) for '?'.
func printable(face font.Face, s string) string {
	out := []rune(s)
	for i, r := range out {
		if r == ' ' {
			continue
		}
		if _, ok := face.GlyphAdvance(r); !ok {
			out[i] = '?'
		}
	}
	return string(out)
}
