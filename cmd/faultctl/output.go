package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/usecase"
)

func writeDiagnosis(w io.Writer, d *domain.Diagnosis, asJSON bool) error {
	if !asJSON {
		_, err := io.WriteString(w, d.Markdown())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode diagnosis: %w", err)
	}
	return nil
}

func writeCounts(w io.Writer, by usecase.StatsDimension, counts []usecase.FrequencyCount, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(counts); err != nil {
			return fmt.Errorf("encode counts: %w", err)
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "Equipment"
	if by == usecase.StatsByFault {
		header = "Fault"
	}
	fmt.Fprintf(tw, "%s\tCount\n", header)
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Count)
	}
	return tw.Flush()
}
