package smoketest

import (
	"io"

	"github.com/okian/tierlist/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}
