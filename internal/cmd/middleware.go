package cmd

import (
	"mime"
	"net/http"
	"reflect"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/internal/controller/agentchat"
	"github.com/gogf/gf/v2/errors/gcode"
	"github.com/gogf/gf/v2/errors/gerror"
	"github.com/gogf/gf/v2/net/ghttp"
	"github.com/gogf/gf/v2/util/gmeta"
	"github.com/samber/lo"
)

// headerUserID 网关透传的用户标识
const headerUserID = "X-User-Id"

// 流式响应不再包一层 JSON
var streamContentType = []string{"text/event-stream", "application/octet-stream", "multipart/x-mixed-replace"}

// MiddlewareUserID 把 X-User-Id 写入上下文，缺失时直接拒绝
func MiddlewareUserID(r *ghttp.Request) {
	uid := r.Header.Get(headerUserID)
	if uid == "" {
		writeFailure(r, http.StatusUnauthorized, int(errors.ErrPermissionDenied), headerUserID+" header is required")
		return
	}
	r.SetCtxVar(agentchat.CtxUserID, uid)
	r.Middleware.Next()
}

// MiddlewareHandlerResponse 统一响应格式 {code, message, data}；
// AppError 使用自身的错误码和 HTTP 状态，其余错误走 gf 的 gcode
func MiddlewareHandlerResponse(r *ghttp.Request) {
	r.Middleware.Next()

	if r.Response.BufferLength() > 0 || r.Response.Writer.BytesWritten() > 0 || isStream(r) {
		return
	}

	err := r.GetError()
	if appErr := errors.GetAppError(err); appErr != nil {
		r.Response.ClearBuffer()
		writeFailure(r, appErr.Code.HTTPStatusCode(), int(appErr.Code), appErr.Message)
		return
	}

	code := gerror.Code(err)
	msg := ""
	switch {
	case err != nil:
		if code == gcode.CodeNil {
			code = gcode.CodeInternalError
		}
		msg = err.Error()
	case r.Response.Status > 0 && r.Response.Status != http.StatusOK:
		code = statusCode(r.Response.Status)
		msg = code.Message()
		// 后续中间件可以取到
		r.SetError(gerror.NewCode(code, msg))
	default:
		code = gcode.CodeOK
		msg = code.Message()
	}

	res := r.GetHandlerResponse()
	if noWrapResp(r) {
		r.Response.WriteJson(res)
		return
	}
	r.Response.WriteJson(ghttp.DefaultHandlerResponse{
		Code:    code.Code(),
		Message: msg,
		Data:    res,
	})
}

func writeFailure(r *ghttp.Request, status, code int, msg string) {
	r.Response.WriteHeader(status)
	r.Response.WriteJson(ghttp.DefaultHandlerResponse{Code: code, Message: msg})
}

func isStream(r *ghttp.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Response.Header().Get("Content-Type"))
	return lo.Contains(streamContentType, mediaType)
}

func statusCode(status int) gcode.Code {
	switch status {
	case http.StatusNotFound:
		return gcode.CodeNotFound
	case http.StatusForbidden:
		return gcode.CodeNotAuthorized
	default:
		return gcode.CodeUnknown
	}
}

// noWrapResp 请求结构体 g.Meta 上标注 no_wrap_resp:"true" 时原样输出
func noWrapResp(r *ghttp.Request) bool {
	handler := r.GetServeHandler().Handler
	if handler.Info.Type == nil || handler.Info.Type.NumIn() != 2 {
		return false
	}
	objectReq := reflect.New(handler.Info.Type.In(1))
	if v := gmeta.Get(objectReq, "no_wrap_resp"); !v.IsEmpty() {
		return v.Bool()
	}
	return false
}
