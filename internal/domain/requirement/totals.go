package requirement

import "github.com/rpggio/gradcredits/internal/domain/credit"

// Totals are the sums derived from a ledger.
type Totals struct {
	MajorRequired       float64 `json:"major_required"`
	MajorElective       float64 `json:"major_elective"`
	Major               float64 `json:"major"`
	Liberal             float64 `json:"liberal"`
	EngineeringCommon   float64 `json:"engineering_common"`
	SecondMajorRequired float64 `json:"second_major_required"`
	SecondMajorElective float64 `json:"second_major_elective"`
	SecondMajor         float64 `json:"second_major"`
	Graduation          float64 `json:"graduation"`
}

// Add returns the element-wise sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		MajorRequired:       t.MajorRequired + o.MajorRequired,
		MajorElective:       t.MajorElective + o.MajorElective,
		Major:               t.Major + o.Major,
		Liberal:             t.Liberal + o.Liberal,
		EngineeringCommon:   t.EngineeringCommon + o.EngineeringCommon,
		SecondMajorRequired: t.SecondMajorRequired + o.SecondMajorRequired,
		SecondMajorElective: t.SecondMajorElective + o.SecondMajorElective,
		SecondMajor:         t.SecondMajor + o.SecondMajor,
		Graduation:          t.Graduation + o.Graduation,
	}
}

// ComputeTotals sums entry credits into per-bucket and combined totals.
// Entries with an unknown bucket are ignored.
func ComputeTotals(entries []credit.Entry) Totals {
	var t Totals
	for _, e := range entries {
		switch e.Bucket {
		case credit.BucketMajorRequired:
			t.MajorRequired += e.Credits
			t.Major += e.Credits
		case credit.BucketMajorElective:
			t.MajorElective += e.Credits
			t.Major += e.Credits
		case credit.BucketLiberal:
			t.Liberal += e.Credits
		case credit.BucketEngineeringCommon:
			t.EngineeringCommon += e.Credits
		case credit.BucketSecondMajorRequired:
			t.SecondMajorRequired += e.Credits
			t.SecondMajor += e.Credits
		case credit.BucketSecondMajorElective:
			t.SecondMajorElective += e.Credits
			t.SecondMajor += e.Credits
		default:
			continue
		}
		t.Graduation += e.Credits
	}
	return t
}

// TotalsByBucket sums credits per bucket. Every known bucket is present.
func TotalsByBucket(entries []credit.Entry) map[credit.Bucket]float64 {
	out := make(map[credit.Bucket]float64, len(credit.Buckets))
	for _, b := range credit.Buckets {
		out[b] = 0
	}
	for _, e := range entries {
		if _, ok := out[e.Bucket]; ok {
			out[e.Bucket] += e.Credits
		}
	}
	return out
}

// TotalsByTerm sums credits per bucket for each term that has entries.
func TotalsByTerm(entries []credit.Entry) map[string]map[credit.Bucket]float64 {
	out := make(map[string]map[credit.Bucket]float64)
	for _, e := range entries {
		if !e.Bucket.Valid() {
			continue
		}
		buckets, ok := out[e.Term]
		if !ok {
			buckets = make(map[credit.Bucket]float64, len(credit.Buckets))
			for _, b := range credit.Buckets {
				buckets[b] = 0
			}
			out[e.Term] = buckets
		}
		buckets[e.Bucket] += e.Credits
	}
	return out
}
