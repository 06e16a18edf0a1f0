package svc

import "errors"

// ErrNoFeedsEnabled 错误：没有启用任何价格源
var ErrNoFeedsEnabled = errors.New("no price feeds enabled")
