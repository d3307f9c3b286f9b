package slicing

import "strings"

// wordStats counts the words and non-space characters of text.
func wordStats(text string) (int, int) {
	words := 0
	chars := 0
	for _, w := range strings.Fields(text) {
		words++
		chars += len(w)
	}
	return words, chars
}

func classify(n int) string {
	label := "small"
	switch {
	case n > 100:
		label = "large"
		fallthrough
	case n > 10:
		label += "ish"
	default:
		label = "tiny"
	}
	return label
}

func firstElement() int {
	a := make([]int, 3)
	a[0] = 5
	return a[0]
}

type point struct{ x, y int }

func pointee(p *point) point {
	p.x = 5
	return *p
}

func named() (r int) {
	r = 7
	return
}

type celsius float64

func (c celsius) String() string {
	return "C"
}

type kelvin float64

func (k *kelvin) String() string {
	s := "K"
	return s
}
