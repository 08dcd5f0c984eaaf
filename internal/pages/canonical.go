package pages

// Canonical selects the version of a scene that goes to print.
//
// If any version is approved, the most recently created approved version wins.
// Otherwise the most recently created version overall wins. Ties on CreatedAt
// break toward the higher version number. Returns nil for an empty slice.
func Canonical(versions []FinalPage) *FinalPage {
	var approved []FinalPage
	for _, v := range versions {
		if v.IsApproved {
			approved = append(approved, v)
		}
	}
	pool := versions
	if len(approved) > 0 {
		pool = approved
	}

	var best *FinalPage
	for i := range pool {
		v := &pool[i]
		if best == nil {
			best = v
			continue
		}
		if v.CreatedAt.After(best.CreatedAt) {
			best = v
			continue
		}
		if v.CreatedAt.Equal(best.CreatedAt) && v.Version > best.Version {
			best = v
		}
	}
	return best
}
