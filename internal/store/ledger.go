package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"horoscope-relay/internal/horoscope"
)

// Publication is a record that has been posted successfully.
type Publication struct {
	Sign        horoscope.Sign
	Date        string
	PostID      int
	Link        string
	MessageID   int
	PublishedAt time.Time
}

// Ledger remembers which (sign, date) pairs have already been posted so a
// rerun of the same day does not create duplicate posts.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) Ledger {
	return Ledger{db: db}
}

// Put records a publication, replacing any previous one for the same sign
// and date.
func (l Ledger) Put(ctx context.Context, p Publication) error {
	_, err := l.db.ExecContext(
		ctx,
		`insert into publication(sign, date, post_id, link, message_id, published_at)
		values (?, ?, ?, ?, ?, ?)
		on conflict (sign, date) do update set
			post_id = excluded.post_id,
			link = excluded.link,
			message_id = excluded.message_id,
			published_at = excluded.published_at`,
		p.Sign.Canonical(), p.Date, p.PostID, p.Link, p.MessageID, p.PublishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("ledger: put: %w", err)
	}
	return nil
}

// Get returns the publication of sign on date, found is false if there is
// none.
func (l Ledger) Get(ctx context.Context, sign horoscope.Sign, date string) (p Publication, found bool, err error) {
	row := l.db.QueryRowContext(
		ctx,
		`select post_id, link, message_id, published_at from publication
		where sign = ? and date = ?`,
		sign.Canonical(), date,
	)
	var publishedAt int64
	err = row.Scan(&p.PostID, &p.Link, &p.MessageID, &publishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Publication{}, false, nil
	}
	if err != nil {
		return Publication{}, false, fmt.Errorf("ledger: get: %w", err)
	}
	p.Sign = sign
	p.Date = date
	p.PublishedAt = time.Unix(publishedAt, 0)
	return p, true, nil
}

// ListDate returns every publication of a date in sign order.
func (l Ledger) ListDate(ctx context.Context, date string) ([]Publication, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`select sign, post_id, link, message_id, published_at from publication
		where date = ?`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	bySign := map[horoscope.Sign]Publication{}
	for rows.Next() {
		var signName string
		var publishedAt int64
		p := Publication{Date: date}
		err := rows.Scan(&signName, &p.PostID, &p.Link, &p.MessageID, &publishedAt)
		if err != nil {
			return nil, fmt.Errorf("ledger: list: %w", err)
		}
		p.Sign, err = horoscope.ParseSign(signName)
		if err != nil {
			return nil, fmt.Errorf("ledger: list: %w", err)
		}
		p.PublishedAt = time.Unix(publishedAt, 0)
		bySign[p.Sign] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}

	var out []Publication
	for _, sign := range horoscope.Signs() {
		if p, ok := bySign[sign]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
