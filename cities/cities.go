// Package cities builds the city picker taxonomy from the public city group feed.
package cities

import (
	"strings"

	"github.com/bytedance/sonic"
)

const (
	// NationwideCode is the pseudo city that searches every city.
	NationwideCode = "100010000"
	// NationwideLabel is the display name of NationwideCode.
	NationwideLabel = "全国"
)

// City is one selectable option.
type City struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// LetterGroup lists the cities whose pinyin starts with Letter.
type LetterGroup struct {
	Letter string `json:"letter"`
	Cities []City `json:"cities"`
}

// Bucket is one tab of the picker, e.g. "ABCDE".
type Bucket struct {
	Name    string        `json:"name"`
	Letters []LetterGroup `json:"letters"`
}

// Taxonomy is the generated city data file.
type Taxonomy struct {
	CityGroups  []Bucket `json:"cityGroups"`
	HotCities   []City   `json:"hotCities"`
	CityOptions []City   `json:"cityOptions"`
}

// Source mirrors the feed at DefaultSourceURL.
type Source struct {
	ZPData struct {
		CityGroup []struct {
			FirstChar string       `json:"firstChar"`
			CityList  []sourceCity `json:"cityList"`
		} `json:"cityGroup"`
		HotCityList []sourceCity `json:"hotCityList"`
	} `json:"zpData"`
}

type sourceCity struct {
	Code cityCode `json:"code"`
	Name string   `json:"name"`
}

// cityCode accepts both numeric and string codes.
type cityCode string

func (c *cityCode) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := sonic.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*c = cityCode(t)
	case nil:
		*c = ""
	default:
		*c = cityCode(strings.Trim(string(data), `"`))
	}
	return nil
}

func (s sourceCity) option() City {
	return City{Value: string(s.Code), Label: s.Name}
}

// bucketLayout fixes the tab order and the letters each tab starts with.
var bucketLayout = []struct {
	name    string
	letters string
}{
	{"ABCDE", "ABCDE"},
	{"FGHJ", "FGHJ"},
	{"KLMN", "KLMN"},
	{"PQRST", "PQRST"},
	{"UVWXYZ", "WXYZ"},
}

// Transform sorts the feed's letter groups into the fixed buckets. A letter that
// belongs to a bucket but is not preset there is appended to it; letters that fit
// no bucket are dropped.
func Transform(src *Source) []Bucket {
	buckets := make([]Bucket, len(bucketLayout))
	for i, layout := range bucketLayout {
		buckets[i].Name = layout.name
		for _, r := range layout.letters {
			buckets[i].Letters = append(buckets[i].Letters, LetterGroup{Letter: string(r), Cities: []City{}})
		}
	}

	for _, group := range src.ZPData.CityGroup {
		letter := strings.ToUpper(strings.TrimSpace(group.FirstChar))
		if letter == "" {
			continue
		}

		cities := make([]City, 0, len(group.CityList))
		for _, c := range group.CityList {
			cities = append(cities, c.option())
		}

		for i := range buckets {
			if !strings.Contains(buckets[i].Name, letter) {
				continue
			}
			buckets[i].setLetter(letter, cities)
			break
		}
	}

	return buckets
}

func (b *Bucket) setLetter(letter string, cities []City) {
	for i := range b.Letters {
		if b.Letters[i].Letter == letter {
			b.Letters[i].Cities = cities
			return
		}
	}
	b.Letters = append(b.Letters, LetterGroup{Letter: letter, Cities: cities})
}

// HotCities returns the feed's hot cities behind the nationwide option.
func HotCities(src *Source) []City {
	hot := make([]City, 0, len(src.ZPData.HotCityList)+1)
	hot = append(hot, City{Value: NationwideCode, Label: NationwideLabel})
	for _, c := range src.ZPData.HotCityList {
		hot = append(hot, c.option())
	}
	return hot
}

// Flatten lists hot cities followed by every bucket's cities in order. Duplicates
// are kept.
func Flatten(hot []City, buckets []Bucket) []City {
	out := append([]City{}, hot...)
	for _, b := range buckets {
		for _, l := range b.Letters {
			out = append(out, l.Cities...)
		}
	}
	return out
}

// Build assembles the complete taxonomy from a feed.
func Build(src *Source) *Taxonomy {
	buckets := Transform(src)
	hot := HotCities(src)
	return &Taxonomy{
		CityGroups:  buckets,
		HotCities:   hot,
		CityOptions: Flatten(hot, buckets),
	}
}
