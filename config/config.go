package config

import (
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv 读取工作目录下的 .env；文件不存在时只用进程环境变量
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("no .env loaded (%v), using process environment", err)
	}
}
