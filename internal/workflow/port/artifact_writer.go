package port

import "context"

// ArtifactWriter 持久化最终文档，返回实际写入的路径
type ArtifactWriter interface {
	Write(ctx context.Context, dir, name string, data []byte) (string, error)
}
