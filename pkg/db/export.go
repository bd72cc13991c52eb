package db

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
)

var csvHeaders = []string{
	"Session ID", "Driver", "Vendor", "Kind", "Taken At",
	"TjMax (C)", "Package Temp (C)", "Ratio", "Frequency (MHz)",
}

// Export writes the samples of one session in format
func (db *DB) Export(w io.Writer, sessionID int64, format ExportFormat) error {
	switch format {
	case ExportFormatCSV:
		return db.ExportCSV(w, sessionID)
	case ExportFormatJSON:
		return db.ExportJSON(w, sessionID)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportCSV exports the samples of a session to CSV format, oldest first
func (db *DB) ExportCSV(w io.Writer, sessionID int64) error {
	session, samples, err := db.sessionWithSamples(sessionID)
	if err != nil {
		return err
	}

	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, s := range samples {
		row := []string{
			strconv.FormatInt(session.ID, 10),
			session.Driver,
			session.Vendor,
			session.Kind,
			s.TakenAt.Format("2006-01-02 15:04:05"),
			strconv.Itoa(s.TjMax),
			strconv.Itoa(s.PackageTemp),
			strconv.Itoa(s.Ratio),
			strconv.Itoa(s.FrequencyMHz),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ExportJSON exports a session and its samples to JSON format, oldest first
func (db *DB) ExportJSON(w io.Writer, sessionID int64) error {
	session, samples, err := db.sessionWithSamples(sessionID)
	if err != nil {
		return err
	}

	export := struct {
		Session *Session  `json:"session"`
		Samples []*Sample `json:"samples"`
	}{
		Session: session,
		Samples: samples,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func (db *DB) sessionWithSamples(id int64) (*Session, []*Sample, error) {
	session, err := db.GetSession(id)
	if err != nil {
		return nil, nil, err
	}

	samples, err := db.ListSamples(SampleFilter{SessionID: &id})
	if err != nil {
		return nil, nil, err
	}
	slices.Reverse(samples)
	return session, samples, nil
}
