package vecindex

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	ErrModelNotFound = errors.New("向量索引不存在")
	ErrDimMismatch   = errors.New("查询向量维度不匹配")
)

// Entry 索引中的一个文档切片
type Entry struct {
	ChunkID    int64
	DocumentID int64
	Document   string // 文档标题
	Article    string
	Content    string
	Vector     []float32
}

// Result 一条检索结果
type Result struct {
	Entry
	Similarity float64
}

// snapshot 一个 embedding 模型的只读索引快照。
// 读路径不加锁；重建时整体换指针，读者不会看到半成品。
type snapshot struct {
	entries []Entry
	dims    int
}

// Index 多模型向量索引。每个 embedding 模型一份独立快照。
type Index struct {
	mu        sync.RWMutex // 只保护模型表；快照本身靠指针交换
	snapshots map[string]*atomic.Value
}

func New() *Index {
	return &Index{
		snapshots: make(map[string]*atomic.Value),
	}
}

// Load 为指定模型装载（或替换）索引快照。
// entries 的 Vector 会被 L2 归一化，点积即余弦相似度。
func (idx *Index) Load(modelName string, entries []Entry) {
	dims := 0
	normalized := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) != dims {
			continue // 维度不一致的脏数据直接跳过
		}
		e.Vector = normalize(e.Vector)
		normalized = append(normalized, e)
	}

	// 固定次序，保证平分时排序稳定
	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i].ChunkID < normalized[j].ChunkID
	})

	snap := &snapshot{entries: normalized, dims: dims}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	holder, ok := idx.snapshots[modelName]
	if !ok {
		holder = &atomic.Value{}
		idx.snapshots[modelName] = holder
	}
	holder.Store(snap)
}

// Search 在指定模型的索引中取 top-k。
// 结果按相似度降序，平分按 ChunkID 升序，重复调用结果次序稳定。
func (idx *Index) Search(query []float32, modelName string, topK int) ([]Result, error) {
	snap, err := idx.snapshot(modelName)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}
	if snap.dims != 0 && len(query) != snap.dims {
		return nil, ErrDimMismatch
	}

	q := normalize(query)

	results := make([]Result, 0, len(snap.entries))
	for _, e := range snap.entries {
		results = append(results, Result{
			Entry:      e,
			Similarity: dot(q, e.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Models 已装载的模型列表
func (idx *Index) Models() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	names := make([]string, 0, len(idx.snapshots))
	for name := range idx.snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size 指定模型索引中的切片数
func (idx *Index) Size(modelName string) int {
	snap, err := idx.snapshot(modelName)
	if err != nil {
		return 0
	}
	return len(snap.entries)
}

func (idx *Index) snapshot(modelName string) (*snapshot, error) {
	idx.mu.RLock()
	holder, ok := idx.snapshots[modelName]
	idx.mu.RUnlock()
	if !ok {
		return nil, ErrModelNotFound
	}
	snap, _ := holder.Load().(*snapshot)
	if snap == nil {
		return nil, ErrModelNotFound
	}
	return snap, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// EncodeVector 向量序列化为小端 float32 字节串（入库格式）
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// DecodeVector 从字节串还原向量
func DecodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
