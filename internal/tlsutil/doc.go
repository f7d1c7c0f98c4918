// Package tlsutil 为访问上游模型服务与向量库的 HTTP 客户端提供统一的 TLS 加固
// （TLS 1.2+，仅 AEAD 密码套件）与连接池默认值。
package tlsutil
