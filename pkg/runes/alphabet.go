package runes

import "sync"

// caseFold holds the static lowercase table and the alphabet derived from it.
type caseFold struct {
	lower map[Rune]Rune
	alpha map[Rune]struct{}
}

// upperLower lists the folded letters as Unicode code point pairs.
var upperLower = [][2]rune{
	{'Ё', 'ё'},
	{'І', 'і'},
	{'Ғ', 'ғ'},
	{'Қ', 'қ'},
	{'Ң', 'ң'},
	{'Ү', 'ү'},
	{'Ұ', 'ұ'},
	{'Һ', 'һ'},
	{'Ә', 'ә'},
	{'Ө', 'ө'},
}

var foldTable = sync.OnceValue(func() *caseFold {
	pairs := make([][2]rune, 0, 32+len(upperLower))
	for cp := rune('А'); cp <= 'Я'; cp++ {
		pairs = append(pairs, [2]rune{cp, cp + ('а' - 'А')})
	}
	pairs = append(pairs, upperLower...)

	cf := &caseFold{
		lower: make(map[Rune]Rune, len(pairs)),
		alpha: make(map[Rune]struct{}, 2*len(pairs)),
	}
	for _, p := range pairs {
		upper, lower := packTwoByte(p[0]), packTwoByte(p[1])
		cf.lower[upper] = lower
		cf.alpha[upper] = struct{}{}
		cf.alpha[lower] = struct{}{}
	}
	return cf
})

// packTwoByte returns the rune Encode produces for a code point in U+0080..U+07FF.
func packTwoByte(cp rune) Rune {
	b0 := 0xC0 | byte(cp>>6)
	b1 := 0x80 | byte(cp&0x3F)
	return Rune(b1)<<8 | Rune(b0)
}

// ToLower folds r if it is an uppercase letter of the table, otherwise returns r.
func ToLower(r Rune) Rune {
	if l, ok := foldTable().lower[r]; ok {
		return l
	}
	return r
}

// IsAlpha reports whether r is a letter of the folding table.
//
// ASCII letters and Cyrillic letters without a case pair in the table are not
// alphabetic by this definition. Word boundaries in TraverseLongest depend on it.
func IsAlpha(r Rune) bool {
	_, ok := foldTable().alpha[r]
	return ok
}
