package cachefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/file-cache/file-cache/internal/storage"
)

// MetaSuffix 附加在数据文件名之后构成元数据边车文件名。
const MetaSuffix = ".meta"

// ErrNotFound 表示条目缺失。与 storage.ErrNotFound 同值，调用方只需匹配一个。
var ErrNotFound = storage.ErrNotFound

// Metadata 是随数据文件一同落盘的响应元信息。Headers 以 [name, value]
// 对的数组序列化，保证头部顺序可以原样往返。
type Metadata struct {
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Headers    [][2]string `json:"headers"`
}

// ReadResult 组合数据流与边车元信息。Meta 为 nil 表示边车缺失，
// 条目依然有效，由上层补默认值。
type ReadResult struct {
	Body io.ReadCloser
	Meta *Metadata
}

// Adapter 在层级存储句柄之上实现缓存条目的读写与清理。
// 根句柄在第一次触达存储时创建并在实例生命周期内复用；
// 其余目录句柄只在单次调用内有效，不跨操作缓存。
type Adapter struct {
	basePath  string
	namespace string

	mu   sync.Mutex
	root storage.Directory
}

// New 构造以 basePath/<namespace> 为根的适配器。根目录延迟到首次操作时创建。
func New(basePath, namespace string) *Adapter {
	return &Adapter{basePath: basePath, namespace: namespace}
}

// rootDir 返回备忘的根句柄，首次调用时创建底层目录。
func (a *Adapter) rootDir() (storage.Directory, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.root == nil {
		root, err := storage.OpenRoot(a.basePath, a.namespace)
		if err != nil {
			return nil, err
		}
		a.root = root
	}
	return a.root, nil
}

// navigate 从根沿 dir 逐段下行。create 为 false 时任一段缺失返回 ErrNotFound。
func (a *Adapter) navigate(dir []string, create bool) (storage.Directory, error) {
	current, err := a.rootDir()
	if err != nil {
		return nil, err
	}
	for _, seg := range dir {
		current, err = current.Dir(seg, create)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// Exists 判断数据文件是否存在。只看数据文件，边车不参与判定。
func (a *Adapter) Exists(ctx context.Context, dir []string, file string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	parent, err := a.navigate(dir, false)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	rc, err := parent.Open(file)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	rc.Close()
	return true, nil
}

// Read 打开数据文件并尽力解析边车。目录或数据文件缺失返回 ErrNotFound；
// 边车缺失不算错误，Meta 置 nil；边车存在却解析失败则按存储错误透传。
func (a *Adapter) Read(ctx context.Context, dir []string, file string) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parent, err := a.navigate(dir, false)
	if err != nil {
		return nil, err
	}

	body, err := parent.Open(file)
	if err != nil {
		return nil, err
	}

	meta, err := readMeta(parent, file)
	if err != nil {
		body.Close()
		return nil, err
	}

	return &ReadResult{Body: body, Meta: meta}, nil
}

func readMeta(parent storage.Directory, file string) (*Metadata, error) {
	rc, err := parent.Open(file + MetaSuffix)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	var meta Metadata
	if err := json.NewDecoder(rc).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata sidecar: %w", err)
	}
	return &meta, nil
}

// Write 建齐缺失目录后落盘一个条目。边车先于数据文件提交：写入在两者之间
// 被打断时数据文件不存在，条目在下次读取时表现为 miss，
// 数据文件的存在与否因此是条目存在的唯一判据。body 为 nil 时写出空数据文件。
func (a *Adapter) Write(ctx context.Context, dir []string, file string, body io.Reader, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parent, err := a.navigate(dir, true)
	if err != nil {
		return err
	}

	if err := writeMeta(parent, file, meta); err != nil {
		return err
	}

	w, err := parent.Create(file)
	if err != nil {
		return err
	}
	if body != nil {
		if _, err := io.Copy(w, body); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Commit()
}

func writeMeta(parent storage.Directory, file string, meta Metadata) error {
	w, err := parent.Create(file + MetaSuffix)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(meta); err != nil {
		w.Abort()
		return err
	}
	return w.Commit()
}

// Delete 删除数据文件与边车，返回数据文件是否曾存在。二者各自独立删除，
// 缺失都不算错误。数据文件确实被删掉时顺带自下而上修剪空目录。
func (a *Adapter) Delete(ctx context.Context, dir []string, file string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	parent, err := a.navigate(dir, false)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	existed := true
	if err := parent.Remove(file); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return false, err
		}
		existed = false
	}

	if err := parent.Remove(file + MetaSuffix); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return existed, err
	}

	if existed {
		a.cleanEmptyDirs(ctx, dir)
	}
	return existed, nil
}

// List 递归遍历整棵树，返回每个数据文件相对根的段序列。兄弟子目录并发下行，
// 结果按分支各自累积后拼接，跨分支顺序不保证；边车文件不出现在结果中。
func (a *Adapter) List(ctx context.Context) ([][]string, error) {
	root, err := a.rootDir()
	if err != nil {
		return nil, err
	}
	return walk(ctx, root, nil)
}

func walk(ctx context.Context, dir storage.Directory, prefix []string) ([][]string, error) {
	entries, err := dir.Entries(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var paths [][]string
	var subdirs []string
	for _, entry := range entries {
		switch entry.Kind {
		case storage.KindDirectory:
			subdirs = append(subdirs, entry.Name)
		case storage.KindFile:
			if strings.HasSuffix(entry.Name, MetaSuffix) {
				continue
			}
			path := make([]string, 0, len(prefix)+1)
			path = append(path, prefix...)
			path = append(path, entry.Name)
			paths = append(paths, path)
		}
	}

	branches := make([][][]string, len(subdirs))
	branchErrs := make([]error, len(subdirs))
	var wg sync.WaitGroup
	for i, name := range subdirs {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			child, err := dir.Dir(name, false)
			if err != nil {
				// 并发删除可能让子目录在迭代后消失，按空分支处理。
				if errors.Is(err, storage.ErrNotFound) {
					return
				}
				branchErrs[i] = err
				return
			}
			childPrefix := make([]string, 0, len(prefix)+1)
			childPrefix = append(childPrefix, prefix...)
			childPrefix = append(childPrefix, name)
			branches[i], branchErrs[i] = walk(ctx, child, childPrefix)
		}(i, name)
	}
	wg.Wait()

	for _, err := range branchErrs {
		if err != nil {
			return nil, err
		}
	}
	for _, branch := range branches {
		paths = append(paths, branch...)
	}
	return paths, nil
}

// cleanEmptyDirs 自最深层向根方向尝试删除空目录。整个过程尽力而为：
// 任一祖先已缺失则直接放弃，删除非空目录失败则在该层停止，绝不向调用方报错。
func (a *Adapter) cleanEmptyDirs(ctx context.Context, dir []string) {
	if len(dir) == 0 || ctx.Err() != nil {
		return
	}

	root, err := a.rootDir()
	if err != nil {
		return
	}

	chain := make([]storage.Directory, 0, len(dir)+1)
	chain = append(chain, root)
	current := root
	for _, seg := range dir {
		next, err := current.Dir(seg, false)
		if err != nil {
			return
		}
		chain = append(chain, next)
		current = next
	}

	for i := len(chain) - 1; i >= 1; i-- {
		parent := chain[i-1]
		if err := parent.Remove(dir[i-1]); err != nil {
			return
		}
	}
}
