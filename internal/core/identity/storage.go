package identity

import (
	"fmt"
	"os"
	"path/filepath"
)

// 目录和密钥文件权限
const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

// writeFile 写入密钥文件，测试中替换以统计写入次数
var writeFile = atomicWriteFile

// atomicWriteFile 原子写文件
//
// 先写入同目录下的临时文件并同步到磁盘，再 rename 到目标路径。
// 任何步骤失败时目标文件保持不变，临时文件被清理。
func atomicWriteFile(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("原子 rename 失败: %w", err)
	}
	return nil
}
