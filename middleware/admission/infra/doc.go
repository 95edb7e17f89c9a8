// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisReputationStore / RedisConfigStore / RedisCounterStore: estado compartilhado no Redis
//   - HTTPHealthProbe: consulta /health do backend protegido
//   - RedisStatsStore / MemoryStatsStore / PromStatsStore: estatísticas de decisão
//   - TokenBucketStore: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
package infra
