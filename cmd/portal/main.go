// portal は学生ポータルのAPIサーバー・ワーカー・管理コマンドを提供する。
//
// 使い方:
//
//	portal [serve|worker|migrate|seed|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/urportal/portal/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
