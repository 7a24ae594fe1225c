package middleware

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	AlgorithmBrotli  = "br"
	AlgorithmGzip    = "gzip"
	AlgorithmDeflate = "deflate"

	DefaultLevel        = 6
	DefaultThreshold    = 1024
	MinCompressionRatio = 0.05
)

type compressor interface {
	io.WriteCloser
	Reset(w io.Writer)
}

type CompressionMiddleware struct {
	logger            types.Logger
	metrics           types.MetricsManager
	compressionConfig *CompressionConfig
	weight            int
	writers           map[string]*sync.Pool
	buffers           sync.Pool
}

type CompressionConfig struct {
	Algorithms   []string `json:"algorithms"`
	Level        int      `json:"level"`
	Threshold    int      `json:"threshold"`
	AllowedTypes []string `json:"allowed_types"`
}

func NewCompressionMiddleware(config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *CompressionMiddleware {
	item := middlewaresConfig(config).Compression

	var compressionConfig = &CompressionConfig{
		Algorithms: []string{AlgorithmBrotli, AlgorithmGzip, AlgorithmDeflate},
		Level:      DefaultLevel,
		Threshold:  DefaultThreshold,
		AllowedTypes: []string{
			"application/json",
			"application/javascript",
			"application/xml",
			"image/svg+xml",
			"text/*",
		},
	}

	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, compressionConfig); err != nil {
			logger.Error("Failed to unmarshal Compression middleware config", zap.Error(err))
		}
	}

	if compressionConfig.Level < 1 || compressionConfig.Level > 9 {
		logger.Warn("Invalid compression level, using default", zap.Int("level", compressionConfig.Level))
		compressionConfig.Level = DefaultLevel
	}
	if compressionConfig.Threshold < 0 {
		compressionConfig.Threshold = DefaultThreshold
	}

	cm := &CompressionMiddleware{
		logger:            logger,
		metrics:           metrics,
		compressionConfig: compressionConfig,
		weight:            itemWeight(item, 50),
		writers:           make(map[string]*sync.Pool, 3),
		buffers: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}

	level := compressionConfig.Level
	for _, algorithm := range compressionConfig.Algorithms {
		var newWriter func() interface{}

		switch algorithm {
		case AlgorithmBrotli:
			newWriter = func() interface{} { return brotli.NewWriterLevel(io.Discard, level) }
		case AlgorithmGzip:
			newWriter = func() interface{} {
				w, _ := gzip.NewWriterLevel(io.Discard, level)
				return w
			}
		case AlgorithmDeflate:
			newWriter = func() interface{} {
				w, _ := flate.NewWriter(io.Discard, level)
				return w
			}
		default:
			logger.Warn("Unsupported compression algorithm ignored", zap.String("algorithm", algorithm))
			continue
		}

		cm.writers[algorithm] = &sync.Pool{New: newWriter}
	}

	return cm
}

func (c *CompressionMiddleware) Name() string { return "compression" }
func (c *CompressionMiddleware) Weight() int  { return c.weight }

func (c *CompressionMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	algorithm := c.negotiate(ctx.Request.Header.Peek(fasthttp.HeaderAcceptEncoding))

	next(ctx)

	if algorithm == "" || ctx.IsHead() {
		return
	}

	if len(ctx.Response.Header.Peek(fasthttp.HeaderContentEncoding)) > 0 {
		return
	}

	status := ctx.Response.StatusCode()
	if status < 200 || status == fasthttp.StatusNoContent || status == fasthttp.StatusNotModified {
		return
	}

	if !c.shouldCompress(ctx.Response.Header.ContentType()) {
		return
	}

	c.compressResponse(ctx, algorithm)
}

// negotiate picks the first configured algorithm the client accepts.
func (c *CompressionMiddleware) negotiate(acceptEncoding []byte) string {
	if len(acceptEncoding) == 0 {
		return ""
	}

	accepted := make(map[string]bool, 4)
	for _, part := range strings.Split(string(acceptEncoding), ",") {
		token := strings.TrimSpace(part)
		if semi := strings.IndexByte(token, ';'); semi >= 0 {
			if strings.TrimSpace(token[semi+1:]) == "q=0" {
				continue
			}
			token = strings.TrimSpace(token[:semi])
		}
		accepted[strings.ToLower(token)] = true
	}

	for _, algorithm := range c.compressionConfig.Algorithms {
		if _, ok := c.writers[algorithm]; ok && (accepted[algorithm] || accepted["*"]) {
			return algorithm
		}
	}

	return ""
}

func (c *CompressionMiddleware) shouldCompress(contentType []byte) bool {
	ct := strings.ToLower(string(contentType))
	if semi := strings.IndexByte(ct, ';'); semi >= 0 {
		ct = ct[:semi]
	}
	ct = strings.TrimSpace(ct)

	if ct == "" {
		return false
	}

	for _, allowed := range c.compressionConfig.AllowedTypes {
		if allowed == ct {
			return true
		}
		if strings.HasSuffix(allowed, "*") && strings.HasPrefix(ct, strings.TrimSuffix(allowed, "*")) {
			return true
		}
	}

	return false
}

func (c *CompressionMiddleware) compressResponse(ctx *fasthttp.RequestCtx, algorithm string) {
	body := ctx.Response.Body()
	if len(body) < c.compressionConfig.Threshold {
		return
	}

	buf := c.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.buffers.Put(buf)

	pool := c.writers[algorithm]
	writer := pool.Get().(compressor)
	writer.Reset(buf)

	_, err := writer.Write(body)
	if err == nil {
		err = writer.Close()
	}
	writer.Reset(io.Discard)
	pool.Put(writer)

	if err != nil {
		c.logger.Warn("Compression failed", zap.String("algorithm", algorithm), zap.Error(err))
		return
	}

	if 1.0-float64(buf.Len())/float64(len(body)) < MinCompressionRatio {
		return
	}

	if c.metrics != nil {
		c.metrics.Counter("http_compressed_responses_total", map[string]string{
			"algorithm": algorithm,
		}).Inc()
	}

	ctx.Response.SetBody(buf.Bytes())
	ctx.Response.Header.Set(fasthttp.HeaderContentEncoding, algorithm)
	addVary(ctx, fasthttp.HeaderAcceptEncoding)
}

func addVary(ctx *fasthttp.RequestCtx, value string) {
	existing := string(ctx.Response.Header.Peek(fasthttp.HeaderVary))
	if existing == "" {
		ctx.Response.Header.Set(fasthttp.HeaderVary, value)
		return
	}
	if strings.Contains(existing, value) {
		return
	}
	ctx.Response.Header.Set(fasthttp.HeaderVary, existing+", "+value)
}
