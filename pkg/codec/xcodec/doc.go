// Package xcodec 提供持久化存储使用的值编解码器。
//
// 持久层只处理不透明的字节序列，值类型到字节的转换通过 [Codec] 接口
// 完成。编解码器以值类型为泛型参数，避免运行时类型断言。
//
// # 当前实现
//
//   - [JSON]: 基于标准库 encoding/json，可读性好，适合配置类数据
//   - [CBOR]: 基于 fxamacker/cbor/v2，二进制紧凑编码，适合大值或高频写入
//
// # 扩展新实现
//
// 实现 [Codec] 接口即可接入，存储引擎不感知具体编码格式。
// 注意：同一个数据库文件必须始终使用同一种编解码器，
// 混用会导致历史数据无法解码。
package xcodec
