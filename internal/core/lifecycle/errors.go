package lifecycle

import "errors"

// ErrInvalidTransition 当前状态不允许该迁移，或另一个迁移正在进行
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

// ErrHookPanic 钩子发生 panic
var ErrHookPanic = errors.New("lifecycle: hook panicked")
