package runrecord

// AccuracySummary aggregates the recognition and ranking self-
// consistency checks saga.RunIntent and saga.RunSourcing annotate onto
// the S2 and S3 StageEvents of every completed run, the way the
// reference coordinator's evaluation report aggregates the same two
// counters across its own logged history.
type AccuracySummary struct {
	RecognitionTotal int `json:"recognition_total"`
	RecognitionHits  int `json:"recognition_hits"`
	RankingTotal     int `json:"ranking_total"`
	RankingHits      int `json:"ranking_hits"`
}

// RecognitionAccuracy returns hits/total, or nil if no run reached S2.
func (s AccuracySummary) RecognitionAccuracy() *float64 {
	return ratio(s.RecognitionHits, s.RecognitionTotal)
}

// RankingAccuracy returns hits/total, or nil if no run reached S3.
func (s AccuracySummary) RankingAccuracy() *float64 {
	return ratio(s.RankingHits, s.RankingTotal)
}

func ratio(hits, total int) *float64 {
	if total == 0 {
		return nil
	}
	v := float64(hits) / float64(total)
	return &v
}

// Accuracy scans every persisted run under baseDir and aggregates the
// recognition_hit and ranking_hit annotations their S2/S3 StageEvents
// carry.
func Accuracy(baseDir string) (AccuracySummary, error) {
	recs, err := loadAll(baseDir)
	if err != nil {
		return AccuracySummary{}, err
	}

	var summary AccuracySummary
	for _, rec := range recs {
		for _, ev := range rec.Log {
			switch ev.Stage {
			case "S2":
				if hit, ok := ev.Annotations["recognition_hit"]; ok {
					summary.RecognitionTotal++
					if hit == "true" {
						summary.RecognitionHits++
					}
				}
			case "S3_SOURCING":
				if hit, ok := ev.Annotations["ranking_hit"]; ok {
					summary.RankingTotal++
					if hit == "true" {
						summary.RankingHits++
					}
				}
			}
		}
	}
	return summary, nil
}
