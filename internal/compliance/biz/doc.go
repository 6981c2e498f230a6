// Package biz 提供合规检索服务的业务逻辑层。
//
// 该包把流水线拆分为以下组件：
//   - Normalizer: 原始文本归一化为 Document（语言、辖区、标题、发布日期）
//   - Chunker: 按段落/句子/空白递归切分，带重叠
//   - Indexer: 分批 embedding 并写入向量库
//   - Retriever: 按辖区过滤的相似度检索
//   - Synthesizer: 生成带引用的分辖区结构化答案
//   - Analyzer: 跨辖区冲突、趋势与需求映射
//   - Service: 组合以上组件，提供统一的服务接口
package biz
