package types

// Generation 发送批次编号
//
// 每个 Publisher 实例独立计数，从 FirstGeneration 开始，
// 一次完整提交被全部投递后递增 1。进程重启后不保证连续。
type Generation uint64

// FirstGeneration 第一个批次编号
const FirstGeneration Generation = 1

// Next 返回下一个批次编号
func (g Generation) Next() Generation {
	return g + 1
}
