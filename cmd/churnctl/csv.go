package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"churnpredict/pipeline"
	"churnpredict/service"
)

// charsets lists the input encodings accepted by --charset.
var charsets = map[string]encoding.Encoding{
	"utf-8":        unicode.UTF8,
	"utf8":         unicode.UTF8,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"gbk":          simplifiedchinese.GBK,
}

func decoderFor(name string) (transform.Transformer, error) {
	enc, ok := charsets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	if enc == unicode.UTF8 {
		// spreadsheet exports often start with a BOM
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	}
	return enc.NewDecoder(), nil
}

// readCustomers decodes a CSV with Telco column names into batch inputs.
// Rows that fail to decode are kept with their error so row numbers line up
// with the output. Columns the pipeline does not know are ignored.
func readCustomers(r io.Reader, charset string) ([]service.Decoded, error) {
	dec, err := decoderFor(charset)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var inputs []service.Decoded
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				inputs = append(inputs, service.Decoded{
					Err: &pipeline.InvalidInputError{Reason: parseErr.Error()},
				})
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		values := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				values[name] = row[i]
			}
		}
		var in service.Decoded
		in.Record, in.Err = pipeline.RecordFromStrings(values)
		inputs = append(inputs, in)
	}
	return inputs, nil
}
