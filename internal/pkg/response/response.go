package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// apiError carries the stable envelope code next to the message; the code
// taxonomy lives in internal/pkg/errcode.
type apiError struct {
	code uint32
	msg  string
}

func (e apiError) Error() string {
	return e.msg
}

func (e apiError) Code() uint32 {
	return e.code
}

// Success writes the {code: 0, msg: "ok", data: ...} envelope.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes the failure envelope. The transport status stays 200, clients
// switch on the envelope code; streaming endpoints bypass this and report
// failures as SSE error events instead.
func Error(c *gin.Context, code int, msg string) {
	proxyutil.FailJson(c, 200, apiError{code: uint32(code), msg: msg})
}
