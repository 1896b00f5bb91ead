// Package fetch acquires ERP extracts from FTP or the local filesystem
// and parses them into frames.
package fetch

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/cadena-mfg/costing-cli/internal/config"
	"github.com/cadena-mfg/costing-cli/internal/dataset"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune   // default ';', the ERP export separator
	Encoding   string // "windows-1252" (default) or "utf-8"
	LazyQuotes bool
	TrimSpace  bool
}

func (o CSVOptions) delimiter() rune {
	if o.Delimiter == 0 {
		return ';'
	}
	return o.Delimiter
}

// decodeReader wraps r with a charset decoder when the extract is not
// already UTF-8.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "latin-1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "utf-8", "utf8":
		return r, nil
	default:
		return nil, eris.Errorf("fetch: unsupported encoding %q", encoding)
	}
}

// StreamCSV reads a CSV extract and sends rows to a channel. The first
// row is the header and is delivered separately. The caller must consume
// the row channel; both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (header []string, rows <-chan []string, errs <-chan error, err error) {
	decoded, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return nil, nil, nil, err
	}

	reader := csv.NewReader(decoded)
	reader.Comma = opts.delimiter()
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // header decides the width, rows may be ragged

	header, err = reader.Read()
	if err == io.EOF {
		return nil, nil, nil, eris.New("fetch: empty extract")
	}
	if err != nil {
		return nil, nil, nil, eris.Wrap(err, "fetch: read header")
	}
	if opts.TrimSpace {
		for i, field := range header {
			header[i] = strings.TrimSpace(field)
		}
	}

	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "fetch: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "fetch: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetch: context cancelled")
				return
			}
		}
	}()

	return header, rowCh, errCh, nil
}

// LoadFrame consumes a CSV extract into a frame. Rows shorter than the
// header are padded with empty cells; longer rows are truncated to the
// header width.
func LoadFrame(ctx context.Context, r io.Reader, opts CSVOptions) (*dataset.Frame, error) {
	header, rowCh, errCh, err := StreamCSV(ctx, r, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for record := range rowCh {
		switch {
		case len(record) < len(header):
			padded := make([]string, len(header))
			copy(padded, record)
			record = padded
		case len(record) > len(header):
			record = record[:len(header)]
		}
		rows = append(rows, record)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	return dataset.New(header, rows), nil
}

// Open resolves an extract reference to a reader. References with an
// ftp:// scheme are fetched from the configured server; anything else is
// treated as a local path.
func Open(ctx context.Context, cfg config.FetchConfig, ref string) (io.ReadCloser, error) {
	if strings.HasPrefix(ref, "ftp://") {
		f := NewFTPFetcher(FTPOptions{
			User:     cfg.FTPUser,
			Password: cfg.FTPPassword,
			Timeout:  time.Duration(cfg.TimeoutSecs) * time.Second,
		})
		return f.Download(ctx, ref)
	}

	file, err := os.Open(ref)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: open %s", ref)
	}
	return file, nil
}

// LoadExtract opens and parses an extract reference in one step using
// the configured delimiter and encoding.
func LoadExtract(ctx context.Context, cfg config.FetchConfig, ref string) (*dataset.Frame, error) {
	rc, err := Open(ctx, cfg, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	delim := ';'
	if cfg.Delimiter != "" {
		delim = rune(cfg.Delimiter[0])
	}
	return LoadFrame(ctx, rc, CSVOptions{
		Delimiter: delim,
		Encoding:  cfg.Encoding,
		TrimSpace: true,
	})
}
