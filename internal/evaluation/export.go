package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
)

// WriteCSV writes points as "fpr,tpr" rows for external plotting.
func WriteCSV(w io.Writer, points []ROCPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"fpr", "tpr"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.FPR, 'f', -1, 64),
			strconv.FormatFloat(p.TPR, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
