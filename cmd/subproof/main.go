// subproof 订阅证明引擎命令行工具
package main

func main() {
	Execute()
}
