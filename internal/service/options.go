package service

type options struct {
	cache             AvailabilityCache
	feed              CheckInPublisher
	refundConcurrency int
	scanConcurrency   int
}

type Option func(*options)

func WithAvailabilityCache(c AvailabilityCache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

func WithCheckInFeed(p CheckInPublisher) Option {
	return func(o *options) {
		if p != nil {
			o.feed = p
		}
	}
}

// WithRefundConcurrency bounds concurrent refund calls during a cancellation cascade.
func WithRefundConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.refundConcurrency = n
		}
	}
}

// WithScanConcurrency bounds concurrent scans in a bulk check-in.
func WithScanConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.scanConcurrency = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		cache:             noopCache{},
		feed:              noopPublisher{},
		refundConcurrency: 4,
		scanConcurrency:   8,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
