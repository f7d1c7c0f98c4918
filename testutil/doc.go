// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供检索引擎测试的共享工具和辅助函数。

# 概述

testutil 包为各包单元测试提供统一的辅助能力，避免重复实现相似的
测试基础设施。本包及子包不依赖 rag，rag 包内测试也可直接引用。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 文件辅助: WriteFile / WriteFiles，在临时目录构造语料
  - 异步断言: AssertEventuallyTrue，超时轮询等待条件满足

# 子包

  - testutil/mocks: MockEmbedder 与 MockGenerator，支持 Builder 模式、
    错误注入与调用记录
  - testutil/fixtures: 样例语料与供应链图 YAML

# 使用示例

	ctx := testutil.TestContext(t)
	gen := mocks.NewMockGenerator().WithResponse("hello")
	out, err := gen.Generate(ctx, "prompt")
*/
package testutil
