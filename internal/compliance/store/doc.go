// Package store 提供分块向量的存储与检索。
//
// 三种后端实现同一个 VectorStore 接口：
//   - memory: 进程内，供测试与单机演示使用；
//   - milvus: 生产默认；
//   - pgvector: 复用已有 PostgreSQL 部署。
//
// 所有后端都以 chunk_id 为身份做 upsert，并在排序前应用辖区过滤。
package store
