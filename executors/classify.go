package executors

import (
	"fmt"
	"net/http"

	"github.com/xraph/courier/job"
	"github.com/xraph/courier/transport"
)

// classify maps an HTTP response to an outcome. 2xx is success. 429 and
// 5xx are temporary, honouring Retry-After when the server sends one.
// Remaining 4xx are permanent: the request itself is wrong and retrying
// cannot change that.
func classify(op string, meta *transport.Meta) job.Outcome {
	switch {
	case meta.Status >= 200 && meta.Status < 300:
		return job.Succeed()
	case meta.Status == http.StatusTooManyRequests || meta.Status >= 500:
		err := fmt.Errorf("%s: server returned %d", op, meta.Status)
		if delay, ok := meta.RetryAfter(); ok {
			return job.RetryAfter(delay, err)
		}
		return job.Retry(err)
	default:
		return job.Fail(fmt.Errorf("%s: server rejected request with %d", op, meta.Status))
	}
}
