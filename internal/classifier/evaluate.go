package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"stressvision/internal/spectral"
)

// ClassNames labels the two classes in report output
var ClassNames = [2]string{"Healthy", "Stressed"}

// StratifiedSplit shuffles row indices per class and holds out testFraction of
// each class for evaluation, so both partitions keep the label balance.
func StratifiedSplit(labels []int32, testFraction float64, r *rand.Rand) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %.2f outside (0,1)", testFraction)
	}
	var byClass [2][]int
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, nil, fmt.Errorf("label %d at row %d is not binary", l, i)
		}
		byClass[l] = append(byClass[l], i)
	}
	for c, rows := range byClass {
		if len(rows) < 2 {
			return nil, nil, fmt.Errorf("class %s has %d rows, need at least 2 to stratify", ClassNames[c], len(rows))
		}
	}

	for _, rows := range byClass {
		r.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		nTest := int(math.Round(testFraction * float64(len(rows))))
		nTest = min(max(nTest, 1), len(rows)-1)
		test = append(test, rows[:nTest]...)
		train = append(train, rows[nTest:]...)
	}
	return train, test, nil
}

// Subset copies the given rows of fm and labels into a new matrix
func Subset(fm *spectral.FeatureMatrix, labels []int32, rows []int) (*spectral.FeatureMatrix, []int32) {
	out := spectral.NewFeatureMatrix(len(rows), fm.Cols)
	ys := make([]int32, len(rows))
	for k, i := range rows {
		copy(out.Row(k), fm.Row(i))
		ys[k] = labels[i]
	}
	return out, ys
}

// ClassMetrics is one row of a classification report
type ClassMetrics struct {
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises hold-out performance
type Report struct {
	Classes  [2]ClassMetrics `json:"classes"`
	Accuracy float64         `json:"accuracy"`
	Total    int             `json:"total"`
}

// Evaluate compares predicted labels against the truth
func Evaluate(yTrue, yPred []int32) (Report, error) {
	if len(yTrue) != len(yPred) {
		return Report{}, fmt.Errorf("%d true labels vs %d predictions", len(yTrue), len(yPred))
	}
	// confusion[t][p]
	var confusion [2][2]int
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t > 1 || p < 0 || p > 1 {
			return Report{}, fmt.Errorf("non-binary label at row %d", i)
		}
		confusion[t][p]++
	}

	rep := Report{Total: len(yTrue)}
	correct := 0
	for c := 0; c < 2; c++ {
		tp := confusion[c][c]
		predicted := confusion[0][c] + confusion[1][c]
		actual := confusion[c][0] + confusion[c][1]
		correct += tp

		m := ClassMetrics{Name: ClassNames[c], Support: actual}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			m.Recall = float64(tp) / float64(actual)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		rep.Classes[c] = m
	}
	if rep.Total > 0 {
		rep.Accuracy = float64(correct) / float64(rep.Total)
	}
	return rep, nil
}

// String renders the report as a fixed-width table
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(&b, "%12s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Total)
	return b.String()
}
