package session

import (
	"golang.org/x/text/language"
)

// ParseLocale converts the packed four character locale sent by clients
// (e.g. 'enUS' as 0x656E5553) into a language tag. Unknown or empty
// values map to language.Und.
func ParseLocale(packed uint32) language.Tag {
	if packed == 0 {
		return language.Und
	}
	b := []byte{byte(packed >> 24), byte(packed >> 16), byte(packed >> 8), byte(packed)}
	tag, err := language.Parse(string(b[:2]) + "-" + string(b[2:]))
	if err != nil {
		return language.Und
	}
	return tag
}

// PackLocale is the inverse of ParseLocale for tags with a language and region.
func PackLocale(tag language.Tag) uint32 {
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf != language.Exact {
		return 0
	}
	s := base.String() + region.String()
	if len(s) != 4 {
		return 0
	}
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
}
