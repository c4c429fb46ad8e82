package log

import (
	"sync"

	"go.uber.org/zap"
)

var once sync.Once

// InitLogger 初始化全局 zap logger，之后统一通过 zap.L() 使用
func InitLogger() {
	once.Do(func() {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		zap.ReplaceGlobals(logger)
	})
}
