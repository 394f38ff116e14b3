package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/variantqc/internal/features"
)

// WriteFeatures replaces the stored feature table with rows using the Appender API.
// Row order is kept in the ordinal column.
func (s *Store) WriteFeatures(rows []features.Row) error {
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "DELETE FROM variant_features"); err != nil {
		return fmt.Errorf("clear variant features: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "variant_features")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for i := range rows {
		r := &rows[i]
		if err := appender.AppendRow(
			int64(i), r.Chrom, r.Pos, nullString(r.ID), nullString(r.Ref), nullString(r.Alt),
			nullValue(r.Qual), r.Filter,
			nullValue(r.DP), nullValue(r.MQ), nullValue(r.QD), nullValue(r.FS),
			nullValue(r.SOR), nullValue(r.ReadPosRankSum), nullValue(r.MQRankSum),
		); err != nil {
			return fmt.Errorf("append variant features: %w", err)
		}
	}

	return appender.Flush()
}

// FeatureCount returns the number of stored rows.
func (s *Store) FeatureCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM variant_features").Scan(&n); err != nil {
		return 0, fmt.Errorf("count variant features: %w", err)
	}
	return n, nil
}

// LoadFeatures reads the stored feature table in its original order.
func (s *Store) LoadFeatures() ([]features.Row, error) {
	rows, err := s.db.Query(`SELECT
		chrom, pos, id, ref, alt, qual, filter,
		dp, mq, qd, fs, sor, read_pos_rank_sum, mq_rank_sum
		FROM variant_features
		ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("query variant features: %w", err)
	}
	defer rows.Close()

	var result []features.Row
	for rows.Next() {
		var (
			r            features.Row
			id, ref, alt sql.NullString
			qual         sql.NullFloat64
			dp, mq, qd   sql.NullFloat64
			fs, sor      sql.NullFloat64
			rprs, mqrs   sql.NullFloat64
		)
		if err := rows.Scan(
			&r.Chrom, &r.Pos, &id, &ref, &alt, &qual, &r.Filter,
			&dp, &mq, &qd, &fs, &sor, &rprs, &mqrs,
		); err != nil {
			return nil, fmt.Errorf("scan variant features: %w", err)
		}
		r.ID = id.String
		r.Ref = ref.String
		r.Alt = alt.String
		r.Qual = value(qual)
		r.DP = value(dp)
		r.MQ = value(mq)
		r.QD = value(qd)
		r.FS = value(fs)
		r.SOR = value(sor)
		r.ReadPosRankSum = value(rprs)
		r.MQRankSum = value(mqrs)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant features: %w", err)
	}
	return result, nil
}

// nullString returns nil if s is empty, otherwise s.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullValue returns nil for an absent value.
func nullValue(v features.Value) any {
	if !v.Valid {
		return nil
	}
	return v.Float
}

// value converts a scanned column back into a feature value.
// Integer-ness is not stored, so whole numbers come back as floats.
func value(f sql.NullFloat64) features.Value {
	if !f.Valid {
		return features.Value{}
	}
	return features.Float(f.Float64)
}
