package pattern

// Condition is a weather condition that overlays an extra pattern after the
// flight category pattern.
type Condition string

const (
	Lightning Condition = "LIGHTNING"
	Snow      Condition = "SNOW"
	Gusts     Condition = "GUSTS"
)

// Conditions lists the overlay conditions in the order their patterns are
// played.
var Conditions = []Condition{Lightning, Snow, Gusts}

// IsCondition returns true if key names an overlay condition rather than a
// flight category.
func IsCondition(key string) bool {
	for _, c := range Conditions {
		if string(c) == key {
			return true
		}
	}
	return false
}

// Resolver maps weather observations to pattern sequences. It never mutates
// its tables, so it may be shared between goroutines.
type Resolver struct {
	categories map[string]Pattern
	overlays   map[Condition]Pattern
}

// NewResolver creates a resolver from the given lookup tables. The maps are
// copied.
func NewResolver(categories map[string]Pattern, overlays map[Condition]Pattern) *Resolver {
	r := &Resolver{
		categories: make(map[string]Pattern, len(categories)),
		overlays:   make(map[Condition]Pattern, len(overlays)),
	}
	for k, v := range categories {
		r.categories[k] = v
	}
	for k, v := range overlays {
		r.overlays[k] = v
	}
	return r
}

// Resolve returns the patterns for the given weather. The flight category
// pattern comes first, followed by the lightning, snow and gust overlays.
// Segments without a configured pattern are omitted, so the result may be
// empty.
func (r *Resolver) Resolve(flightCategory string, lightning, snow, gusts bool) []Pattern {
	var patterns []Pattern

	if p, ok := r.categories[flightCategory]; ok {
		patterns = append(patterns, p)
	}

	active := map[Condition]bool{
		Lightning: lightning,
		Snow:      snow,
		Gusts:     gusts,
	}
	for _, c := range Conditions {
		if !active[c] {
			continue
		}
		if p, ok := r.overlays[c]; ok {
			patterns = append(patterns, p)
		}
	}

	return patterns
}
