package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/preprocess"
)

// parseFasta reads FASTA records. Header fields are pipe-separated:
//
//	>read_id|taxon label|location|source
//
// Everything after the read ID is optional. Sequence lines up to the
// next header are concatenated.
func parseFasta(r io.Reader) ([]domain.Read, error) {
	var (
		reads   []domain.Read
		current *domain.Read
		seq     strings.Builder
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Sequence = seq.String()
		current.Quality = preprocess.Quality(current.Sequence)
		reads = append(reads, *current)
		current = nil
		seq.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			read, err := parseHeader(line[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current = read
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: %w: sequence before first header", lineNo, domain.ErrInvalidInput)
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	if len(reads) == 0 {
		return nil, fmt.Errorf("%w: no FASTA records found", domain.ErrInvalidInput)
	}
	return reads, nil
}

func parseHeader(header string) (*domain.Read, error) {
	fields := strings.Split(header, "|")
	id := strings.TrimSpace(fields[0])
	if id == "" {
		return nil, fmt.Errorf("%w: empty read ID in header", domain.ErrInvalidInput)
	}

	read := &domain.Read{ID: id}
	if len(fields) > 1 {
		read.Label = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		read.Sample.Location = strings.TrimSpace(fields[2])
	}
	if len(fields) > 3 {
		read.Sample.Source = strings.TrimSpace(fields[3])
	}
	return read, nil
}
