package entities

// UserProfile is the sparse set of facts the agent has learned about the
// user. Fields are pointers so that "unknown" and "zero" stay distinct and
// merges never clobber facts that were not restated.
type UserProfile struct {
	Name       *string  `json:"name,omitempty"`
	Age        *int     `json:"age,omitempty"`
	Occupation *string  `json:"occupation,omitempty"`
	Income     *float64 `json:"income,omitempty"`
	Gender     *string  `json:"gender,omitempty"`
	Region     string   `json:"region"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// ProfileUpdate carries the fields of one update_user_profile call.
// Absent fields stay nil and leave the profile untouched.
type ProfileUpdate struct {
	Name       *string  `json:"name,omitempty"`
	Age        *int     `json:"age,omitempty"`
	Occupation *string  `json:"occupation,omitempty"`
	Income     *float64 `json:"income,omitempty"`
	Gender     *string  `json:"gender,omitempty"`
}

// Merge applies the update to the profile, last writer wins per field.
func (p *UserProfile) Merge(u ProfileUpdate) {
	if u.Name != nil {
		p.Name = u.Name
	}
	if u.Age != nil {
		p.Age = u.Age
	}
	if u.Occupation != nil {
		p.Occupation = u.Occupation
	}
	if u.Income != nil {
		p.Income = u.Income
	}
	if u.Gender != nil {
		p.Gender = u.Gender
	}
}
