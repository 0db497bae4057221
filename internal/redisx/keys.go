package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> {"order_id": "...", "status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Cache daftar produk (GET /api/products), di-invalidate setiap stok berubah
	KeyProductList = "products:list"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"

	// Journal reclaim: sorted set, member = order_id, score = due time (unix ms)
	KeyReclaimJournal = "reclaim:pending"
)

var (
	TTLStatusCache  = 5 * time.Minute
	TTLProductCache = 1 * time.Minute
	TTLDedup        = 48 * time.Hour
)
