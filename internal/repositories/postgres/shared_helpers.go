package postgres

import (
	"errors"
	"sync/atomic"

	"gorm.io/gorm"
)

// readerFallbacks counts reads that had to fall back to the writer pool.
var readerFallbacks atomic.Int64

// ReaderFallbacks returns the running count of reader-to-writer fallbacks.
func ReaderFallbacks() int64 {
	return readerFallbacks.Load()
}

// pools routes queries between the writer and optional reader connection
// pools. Writes always go to the writer; explicit transactions override
// everything.
type pools struct {
	writer *gorm.DB
	reader *gorm.DB
}

func newPools(writer, reader *gorm.DB) *pools {
	return &pools{writer: writer, reader: reader}
}

// write returns the handle for a write: the transaction if given, else the
// writer pool.
func (p *pools) write(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.writer
}

// read returns the handle for a read-mostly query. Inside a transaction
// reads must see that transaction's writes, so tx wins.
func (p *pools) read(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	if p.reader != nil {
		return p.reader
	}
	return p.writer
}

// readFallback retries a failed reader query once against the writer pool.
// Reader failures are counted so operators can see an unhealthy replica.
func (p *pools) readFallback(tx *gorm.DB, err error, retry func(db *gorm.DB) error) error {
	if err == nil || tx != nil || p.reader == nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	readerFallbacks.Add(1)
	return retry(p.writer)
}

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
