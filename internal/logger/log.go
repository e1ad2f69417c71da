package logger

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	bodyLimit = 16 * 1024 // per body, keeps a record well under CloudWatch's event limit

	// RequestIDKey is the gin context key holding the request id
	RequestIDKey = "request_id"
)

// requestRecord is the per-request log entry
type requestRecord struct {
	RequestID       string
	Timestamp       time.Time
	HTTPStatusCode  int
	ErrorStackTrace string
	HTTPMethod      string
	RequestPath     string
	RequestQuery    string
	RequestBody     string
	ResponseBody    string
	RetryNum        string
	RetryReason     string
}

func (r *requestRecord) fields(duration time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("request_id", r.RequestID),
		zap.String("method", r.HTTPMethod),
		zap.String("path", r.RequestPath),
		zap.String("query", r.RequestQuery),
		zap.Int("status", r.HTTPStatusCode),
		zap.Duration("duration", duration),
		zap.String("request_body", truncate(r.RequestBody)),
		zap.String("response_body", truncate(r.ResponseBody)),
	}
	if r.RetryNum != "" {
		fields = append(fields, zap.String("retry_num", r.RetryNum), zap.String("retry_reason", r.RetryReason))
	}
	if r.ErrorStackTrace != "" {
		fields = append(fields, zap.String("stack", r.ErrorStackTrace))
	}
	return fields
}

// GinLogMiddleware writes one structured log entry per request, including
// requests that panic.
func GinLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// overwrite the gin.Context.Writer to log response body
		respLogWriter := &respLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = respLogWriter

		record := initRequestRecord(c)
		c.Set(RequestIDKey, record.RequestID)

		defer func() {
			// finally print request log even panic
			GetLogger().Info("request", record.fields(time.Since(record.Timestamp))...)
		}()

		defer func() {
			if r := recover(); r != nil {
				record.HTTPStatusCode = http.StatusInternalServerError
				record.ErrorStackTrace = string(debug.Stack())
				// throw the panic to the later middlewares
				panic(r)
			}
		}()

		c.Next()

		record.HTTPStatusCode = c.Writer.Status()
		record.ResponseBody = respLogWriter.body.String()
	}
}

func truncate(s string) string {
	if len(s) <= bodyLimit {
		return s
	}
	return s[:bodyLimit] + "TRUNCATED..."
}

type respLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w respLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w respLogWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func initRequestRecord(c *gin.Context) *requestRecord {
	var requestBody []byte
	if c.Request.Body != nil {
		var err error
		requestBody, err = io.ReadAll(c.Request.Body)
		if err != nil {
			GetLogger().Warn("failed to read request body for logging", zap.Error(err))
		}
		// reattach request body for later use
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
	}

	requestID := uuid.NewString()
	if lc, ok := lambdacontext.FromContext(c.Request.Context()); ok {
		requestID = lc.AwsRequestID
	}

	return &requestRecord{
		RequestID:    requestID,
		Timestamp:    time.Now(),
		HTTPMethod:   c.Request.Method,
		RequestPath:  c.Request.URL.Path,
		RequestQuery: c.Request.URL.Query().Encode(),
		RequestBody:  string(requestBody),
		RetryNum:     c.GetHeader("X-Slack-Retry-Num"),
		RetryReason:  c.GetHeader("X-Slack-Retry-Reason"),
	}
}
