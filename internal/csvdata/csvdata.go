// Package csvdata reads and appends the CSV-backed transaction and category
// sources. Malformed cells degrade per record (amount 0, zero date) and are
// logged; a malformed row never aborts the read.
package csvdata

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/domain"
)

// DateFormat is the on-disk date layout for transactions.
const DateFormat = "2006-01-02"

// TransactionHeader is the canonical column order for transaction files.
var TransactionHeader = []string{"transaction_id", "merchant", "category_id", "amount", "date", "user_id"}

// ParseTransactions decodes transaction rows from r. Rows with malformed
// amounts keep the record with amount 0; malformed dates leave the zero
// time. Missing user ids default to guest. Decoding errors on individual
// rows are logged and skipped.
func ParseTransactions(r io.Reader, log zerolog.Logger) []domain.Transaction {
	rows := readRecords(r, log)
	out := make([]domain.Transaction, 0, len(rows))

	for i, row := range rows {
		merchant := strings.TrimSpace(row["merchant"])
		categoryID := strings.TrimSpace(row["category_id"])
		userID := strings.TrimSpace(row["user_id"])
		if userID == "" {
			userID = domain.DefaultUserID
		}

		amount := 0.0
		if raw := strings.TrimSpace(row["amount"]); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				log.Warn().Int("row", i+1).Str("amount", raw).Msg("Malformed amount, defaulting to 0")
			} else {
				amount = v
			}
		}

		var date time.Time
		if raw := strings.TrimSpace(row["date"]); raw != "" {
			d, err := time.Parse(DateFormat, raw)
			if err != nil {
				log.Warn().Int("row", i+1).Str("date", raw).Msg("Malformed date, excluding from date sets")
			} else {
				date = d
			}
		}

		out = append(out, domain.Transaction{
			TransactionID: strings.TrimSpace(row["transaction_id"]),
			UserID:        userID,
			Merchant:      merchant,
			CategoryID:    categoryID,
			Amount:        amount,
			Date:          date,
		})
	}
	return out
}

// ParseCategories decodes category rows from r into catalog records.
// co2e_per_dollar defaults to 0 when missing or unparseable and is never
// negative. The display name is the last segment of the hierarchy column,
// falling back to the group column, then the category id.
func ParseCategories(r io.Reader, log zerolog.Logger) []catalog.Record {
	rows := readRecords(r, log)
	out := make([]catalog.Record, 0, len(rows))

	for i, row := range rows {
		categoryID := strings.TrimSpace(row["category_id"])
		if categoryID == "" {
			continue
		}

		co2e := 0.0
		if raw := strings.TrimSpace(row["co2e_per_dollar"]); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 {
				log.Warn().Int("row", i+1).Str("co2e_per_dollar", raw).Msg("Malformed co2e, defaulting to 0")
			} else {
				co2e = v
			}
		}

		out = append(out, catalog.Record{
			CategoryID:    categoryID,
			Name:          displayName(row, categoryID),
			CO2ePerDollar: co2e,
		})
	}
	return out
}

func displayName(row map[string]string, categoryID string) string {
	hierarchy := strings.ReplaceAll(row["hierarchy"], `"`, "")
	if hierarchy != "" {
		segments := strings.Split(hierarchy, ",")
		if name := strings.TrimSpace(segments[len(segments)-1]); name != "" {
			return name
		}
	}
	if group := strings.TrimSpace(row["group"]); group != "" {
		return group
	}
	return categoryID
}

// readRecords reads a headered CSV into per-row column maps. Rows with the
// wrong field count are tolerated; a broken stream yields what was read so
// far.
func readRecords(r io.Reader, log zerolog.Logger) []map[string]string {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err != io.EOF {
			log.Warn().Err(err).Msg("Failed to read CSV header")
		}
		return nil
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.ToLower(header[i]))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable CSV row")
			continue
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}
