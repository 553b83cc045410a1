package port

import "context"

// Completer 文本补全服务：输入提示词，返回补全文本。重试、限流、鉴权由实现负责。
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFactory 为一次运行创建补全服务；investment 为本次运行的花费上限（<= 0 不限）
type CompleterFactory interface {
	NewCompleter(investment float64) Completer
}

// CompleterFunc 适配普通函数
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
