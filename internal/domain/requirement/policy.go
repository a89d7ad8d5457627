package requirement

// SecondMajorActiveMajorMin is the primary-major minimum that applies while a
// second major is enabled, regardless of the policy's MajorOverall.
const SecondMajorActiveMajorMin = 48

// Policy holds the graduation minimums. Its shape is fixed; only values vary.
type Policy struct {
	MajorRequiredMin       float64 `json:"major_required_min"`
	MajorElectiveMin       float64 `json:"major_elective_min"`
	MajorOverall           float64 `json:"major_overall"`
	LiberalMin             float64 `json:"liberal_min"`
	EngCommonMin           float64 `json:"eng_common_min"`
	SecondMajorRequiredMin float64 `json:"second_major_required_min"`
	SecondMajorElectiveMin float64 `json:"second_major_elective_min"`
	SecondMajorOverall     float64 `json:"second_major_overall"`
	GraduationMin          float64 `json:"graduation_min"`
}

// DefaultPolicy returns the production policy. Each call returns a fresh
// copy so callers can never mutate the default.
func DefaultPolicy() Policy {
	return Policy{
		MajorRequiredMin:       36,
		MajorElectiveMin:       26,
		MajorOverall:           62,
		LiberalMin:             50,
		EngCommonMin:           3,
		SecondMajorRequiredMin: 20,
		SecondMajorElectiveMin: 19,
		SecondMajorOverall:     39,
		GraduationMin:          130,
	}
}
