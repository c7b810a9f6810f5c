package approval

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewDocNumber returns DOC-<epochMillis>-<8 lowercase hex chars>.
func NewDocNumber(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DOC-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + hex[:8]
}
