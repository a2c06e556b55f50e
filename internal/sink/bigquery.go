// Package sink appends finished jobs' transactions to a BigQuery dataset so
// statements accumulate into a queryable history. Like archival, the sink is
// optional and best effort.
package sink

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dvloznov/statement-insights/internal/statement"
)

const transactionsTable = "transactions"

// TransactionRow is the warehouse schema for one transaction.
type TransactionRow struct {
	JobID       string     `bigquery:"job_id"`
	Filename    string     `bigquery:"filename"`
	Method      string     `bigquery:"extraction_method"`
	Date        civil.Date `bigquery:"transaction_date"`
	Description string     `bigquery:"description"`
	Amount      float64    `bigquery:"amount"`
	Type        string     `bigquery:"type"`
	Category    string     `bigquery:"category"`
	IngestedAt  time.Time  `bigquery:"ingested_ts"`
}

// BigQuery streams rows into <project>.<dataset>.transactions.
type BigQuery struct {
	client  *bigquery.Client
	dataset string
	now     func() time.Time
}

// NewBigQuery builds the sink. credentialsFile may be empty, in which case
// Application Default Credentials apply.
func NewBigQuery(ctx context.Context, project, dataset, credentialsFile string) (*BigQuery, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("sink: bigquery client: %w", err)
	}
	return &BigQuery{client: client, dataset: dataset, now: time.Now}, nil
}

// Append streams the job's transactions into the warehouse.
func (b *BigQuery) Append(ctx context.Context, job *statement.Job) error {
	if len(job.Transactions) == 0 {
		return nil
	}
	rows := make([]*TransactionRow, 0, len(job.Transactions))
	ingested := b.now()
	for _, t := range job.Transactions {
		amount, _ := t.Amount.Round(2).Float64()
		rows = append(rows, &TransactionRow{
			JobID:       job.ID,
			Filename:    job.Filename,
			Method:      string(job.Method),
			Date:        t.Date,
			Description: t.Description,
			Amount:      amount,
			Type:        string(t.Type),
			Category:    t.Category,
			IngestedAt:  ingested,
		})
	}

	inserter := b.client.Dataset(b.dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("sink: inserting %d rows for job %s: %w", len(rows), job.ID, err)
	}
	return nil
}

// QueryByDateRange returns warehouse transactions within [start, end],
// ordered by date. Useful for ad hoc reporting across statements.
func (b *BigQuery) QueryByDateRange(ctx context.Context, start, end civil.Date) ([]*TransactionRow, error) {
	q := b.client.Query(fmt.Sprintf(`
		SELECT job_id, filename, extraction_method, transaction_date,
		       description, amount, type, category, ingested_ts
		FROM %s.%s
		WHERE transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date, ingested_ts
	`, b.dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: start.String()},
		{Name: "end_date", Value: end.String()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("sink: query read: %w", err)
	}
	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sink: iterating rows: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// Close releases the underlying client.
func (b *BigQuery) Close() error {
	return b.client.Close()
}
