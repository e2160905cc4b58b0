// Package lib 包含与业务无关的基础设施工具库
//
//   - log: 按组件输出的结构化日志
package lib
