package dedupe

// Option configures a Deduper.
type Option func(*fifoDeduper)

// WithMaxSize bounds the number of remembered ids; n <= 0 means unbounded.
func WithMaxSize(n int) Option {
	return func(d *fifoDeduper) {
		d.maxSize = n
	}
}
