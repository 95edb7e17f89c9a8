// Package admission fornece o adapter HTTP (net/http) do controle de admissão do gateway.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (reputação, shield, orçamento adaptativo, contagem, violações)
//     e o Pipeline que encadeia tudo
//   - infra: implementações concretas (Redis, sonda HTTP de saúde, stats, token bucket, semáforo)
//   - admission (este pacote): middleware HTTP + extração de chave + tradução do Verdict
//     para status/headers/JSON + Forwarder (reverse proxy com timeout)
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. Chama application.Pipeline.Evaluate para obter o Verdict
//  3. Se terminal, responde 403, 401, 429 ou 500
//  4. Se admitido, chama o próximo handler (Forwarder), que pode terminar em 502/504
//  5. Registra o outcome final no StatsStore (best-effort)
package admission
